package runlog

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/example/codex/internal/gitinfo"
)

const revisionTimeout = 5 * time.Second

// Environment describes the host that produced a log record. Fields that
// could not be determined are omitted.
type Environment struct {
	Platform  string `json:"platform"`
	GoVersion string `json:"go_version"`
	Hostname  string `json:"hostname,omitempty"`
	GitSHA    string `json:"git_sha,omitempty"`
	GitDirty  *bool  `json:"git_dirty,omitempty"`
}

// RevisionFunc reports the source revision of dir.
type RevisionFunc func(ctx context.Context, dir string) (commit string, dirty bool, err error)

// CollectEnvironment gathers host metadata. Revision lookups are diagnostic
// only: any failure leaves the git fields empty.
func CollectEnvironment(dir string, revision RevisionFunc) Environment {
	env := Environment{
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		GoVersion: runtime.Version(),
	}
	if host, err := os.Hostname(); err == nil {
		env.Hostname = host
	}
	if revision == nil {
		revision = gitinfo.Head
	}
	ctx, cancel := context.WithTimeout(context.Background(), revisionTimeout)
	defer cancel()
	commit, dirty, err := revision(ctx, dir)
	if commit != "" {
		env.GitSHA = commit
		if err == nil {
			env.GitDirty = &dirty
		}
	}
	return env
}
