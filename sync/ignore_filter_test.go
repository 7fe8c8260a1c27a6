package sync

import "testing"

func TestIgnoreFilterMatchesHardcodedVCSDirs(t *testing.T) {
	f := NewIgnoreFilter(nil)
	cases := []string{".git/HEAD", ".git", "sub/.hg/store", "sub/.svn/entries"}
	for _, c := range cases {
		if !f.Match(c) {
			t.Errorf("expected %q to be ignored", c)
		}
	}
}

func TestIgnoreFilterMatchesBuildArtifactDirs(t *testing.T) {
	f := NewIgnoreFilter(nil)
	cases := []string{"node_modules/pkg/index.js", "target/debug/bin", "build/out.o", "dist/bundle.js"}
	for _, c := range cases {
		if !f.Match(c) {
			t.Errorf("expected %q to be ignored", c)
		}
	}
}

func TestIgnoreFilterMatchesSwapAndBackupFiles(t *testing.T) {
	f := NewIgnoreFilter(nil)
	cases := []string{"notes.txt~", "sub/.file.swp"}
	for _, c := range cases {
		if !f.Match(c) {
			t.Errorf("expected %q to be ignored", c)
		}
	}
}

func TestIgnoreFilterAppliesUserGlobPatterns(t *testing.T) {
	f := NewIgnoreFilter([]string{"*.log", "secrets/*"})
	if !f.Match("app.log") {
		t.Errorf("expected app.log to match *.log")
	}
	if !f.Match("secrets/key.pem") {
		t.Errorf("expected secrets/key.pem to match secrets/*")
	}
	if f.Match("keep/me.txt") {
		t.Errorf("expected keep/me.txt to not match")
	}
}

func TestIgnoreFilterUserPatternMatchesBaseName(t *testing.T) {
	f := NewIgnoreFilter([]string{"*.tmp"})
	if !f.Match("deep/nested/path/file.tmp") {
		t.Errorf("expected nested file.tmp to match base-name glob *.tmp")
	}
}

func TestIgnoreFilterNonMatchingPathPasses(t *testing.T) {
	f := NewIgnoreFilter([]string{"*.log"})
	if f.Match("src/main.go") {
		t.Errorf("expected src/main.go to not be ignored")
	}
}
