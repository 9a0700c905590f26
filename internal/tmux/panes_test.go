package tmux

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleListing = "1\tmain\t0\teditor\t0\tzsh\t100\t/home/dev/api\t✳ Claude Code\n" +
	"0\tdetached\t0\tlogs\t0\ttail\t999\t/var/log\tlogs\n" +
	"2\twork\t1\tagents\t2\tnode\t200\t/home/dev/web\ttitle\twith\ttabs\n" +
	"1\tmain\tx\tbroken\t0\tzsh\t1\t/\tt\n" +
	"short\tline\n" +
	"1\tmain\t0\teditor\t0\tzsh\t101\t/home/dev/api\tduplicate\n"

func TestParsePaneListing(t *testing.T) {
	panes := parsePaneListing(sampleListing)
	require.Len(t, panes, 2)

	assert.Equal(t, Pane{
		Session: "main", WindowIndex: 0, WindowName: "editor", PaneIndex: 0,
		Command: "zsh", PID: 100, Path: "/home/dev/api", Title: "✳ Claude Code",
	}, panes[0])
	assert.Equal(t, "main:0.0", panes[0].Target())

	assert.Equal(t, "work:1.2", panes[1].Target())
	assert.Equal(t, "title\twith\ttabs", panes[1].Title)
}

func TestListPanesEnrichesFromProcessTree(t *testing.T) {
	r := newFakeRunner()
	r.outputs["list-panes"] = sampleListing
	c := newTestClient(r)

	panes, err := c.ListPanes(context.Background())
	require.NoError(t, err)
	require.Len(t, panes, 2)

	assert.Equal(t, "-zsh", panes[0].CmdLine)
	assert.Contains(t, panes[0].ChildCommands, "node /usr/local/bin/claude --resume")
	assert.Contains(t, panes[0].ChildCommands, "codex")

	detect := panes[1].DetectionStrings()
	assert.Equal(t, []string{"node", "title\twith\ttabs", "node /usr/local/bin/claude --resume", "/bin/bash -c npm test", "bash", "/usr/bin/node jest", "node"}, detect)
}

func TestListPanesError(t *testing.T) {
	r := newFakeRunner()
	r.errs["list-panes"] = ErrNoServer
	c := newTestClient(r)

	_, err := c.ListPanes(context.Background())
	assert.True(t, errors.Is(err, ErrNoServer))
}

func TestTitleShowsSpinner(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"", false},
		{"zsh", false},
		{"⠋ Compiling", true},
		{"task ⠓", true},
		{"✳ Claude Code", false},
		{"⠙ ✳ both", true},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleShowsSpinner(tt.title))
		})
	}
}
