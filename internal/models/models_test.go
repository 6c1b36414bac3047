package models

import (
	"testing"

	"github.com/rotisserie/eris"
)

func TestRepoKey(t *testing.T) {
	key := RepoKey{Host: "github.com", Owner: "golang", Repo: "go"}

	if got := key.FullName(); got != "golang/go" {
		t.Errorf("FullName() = %q, want golang/go", got)
	}
	if got := key.String(); got != "github.com/golang/go" {
		t.Errorf("String() = %q, want github.com/golang/go", got)
	}
}

func TestStatusReportHasChanges(t *testing.T) {
	tests := []struct {
		name   string
		report StatusReport
		want   bool
	}{
		{name: "clean", report: StatusReport{}, want: false},
		{name: "staged", report: StatusReport{Staged: 1}, want: true},
		{name: "modified", report: StatusReport{Modified: 2}, want: true},
		{name: "untracked", report: StatusReport{Untracked: 3}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.HasChanges(); got != tt.want {
				t.Errorf("HasChanges() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyResultFailed(t *testing.T) {
	tests := []struct {
		name   string
		result ApplyResult
		want   bool
	}{
		{name: "success", result: ApplyResult{}, want: false},
		{name: "non-zero exit", result: ApplyResult{ExitCode: 2}, want: true},
		{name: "spawn error", result: ApplyResult{Err: eris.New("not found")}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}
