package gitcmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGithubURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "ssh scp syntax",
			url:       "git@github.com:openmicroscopy/openmicroscopy.git",
			wantOwner: "openmicroscopy",
			wantRepo:  "openmicroscopy",
		},
		{
			name:      "https",
			url:       "https://github.com/snoopy/sandbox.git",
			wantOwner: "snoopy",
			wantRepo:  "sandbox",
		},
		{
			name:      "git protocol",
			url:       "git://github.com/snoopy/sandbox.git",
			wantOwner: "snoopy",
			wantRepo:  "sandbox",
		},
		{
			name:      "https without .git suffix",
			url:       "https://github.com/snoopy/sandbox",
			wantOwner: "snoopy",
			wantRepo:  "sandbox",
		},
		{
			name:    "not github",
			url:     "https://gitlab.com/snoopy/sandbox.git",
			wantErr: true,
		},
		{
			name:    "missing owner",
			url:     "https://github.com/sandbox.git",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := parseGithubURL(tt.url)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestSplitNonEmptyLines(t *testing.T) {
	assert.Equal(t,
		[]string{"components/server", "components/client"},
		splitNonEmptyLines("components/server\n\ncomponents/client\n"),
	)
	assert.Nil(t, splitNonEmptyLines(""))
}

func TestSubmoduleDerivesChildDirWithoutMutatingParent(t *testing.T) {
	parent := New("/tmp/repo")
	child := parent.Submodule("components/server")

	assert.Equal(t, filepath.Join("/tmp/repo", "components/server"), child.Dir())
	assert.Equal(t, "/tmp/repo", parent.Dir())
}
