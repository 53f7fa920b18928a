package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"migrate"},
		{"slots"},
		{"appointments", "list"},
		{"appointments", "transition"},
		{"waitlist", "list"},
		{"outbox", "stats"},
		{"outbox", "list"},
		{"outbox", "dispatch"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered: %v", path, err)
		}
	}
}

func TestArgumentErrorsBeforeConnecting(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"bad start date", []string{"slots", "--start", "17/10/2026"}, "invalid --start"},
		{"missing start", []string{"slots"}, "required flag"},
		{"bad list date", []string{"appointments", "list", "--date", "tomorrow"}, "invalid --date"},
		{"bad appointment id", []string{"appointments", "transition", "nope", "completed"}, "invalid appointment id"},
		{"transition arity", []string{"appointments", "transition", "only-one"}, "accepts 2 arg"},
		{"bad waitlist date", []string{"waitlist", "list", "--date", "2026-13-01"}, "invalid --date"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tc.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.Execute()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}
