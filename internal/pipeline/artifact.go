package pipeline

import (
	"errors"
	"io/fs"
	"log"
	"os"
)

// workArtifact owns a unit's scratch file for the duration of one stage.
// Build it before invoking the unit and defer release so the file is removed
// on every exit path.
type workArtifact struct {
	path  string
	stage string
	log   *log.Logger
}

func newWorkArtifact(path, stage string, logger *log.Logger) *workArtifact {
	return &workArtifact{path: path, stage: stage, log: logger}
}

// release removes the artifact. An absent file is fine; any other failure is
// logged and otherwise ignored.
func (a *workArtifact) release() {
	if a == nil || a.path == "" {
		return
	}
	err := os.Remove(a.path)
	switch {
	case err == nil:
		a.log.Printf("stage: %s removed work artifact path=%s", a.stage, a.path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		a.log.Printf("stage: %s WARN could not remove work artifact path=%s err=%v", a.stage, a.path, err)
	}
}
