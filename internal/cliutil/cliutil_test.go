package cliutil

import (
	"flag"
	"testing"

	"dafit/internal/family"
)

func TestSplitFlagsAndPositionals(t *testing.T) {
	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	var b bool
	var s string
	fs.BoolVar(&b, "bool", false, "")
	fs.StringVar(&s, "base-model", "", "")
	flagArgs, posArgs := SplitFlagsAndPositionals(fs, []string{"feat.tsv", "--bool", "--base-model", "LM", "meta.tsv", "--", "-odd"})
	if len(flagArgs) != 3 || flagArgs[2] != "LM" {
		t.Fatalf("unexpected flags: %v", flagArgs)
	}
	if len(posArgs) != 3 || posArgs[0] != "feat.tsv" || posArgs[1] != "meta.tsv" || posArgs[2] != "-odd" {
		t.Fatalf("unexpected positionals: %v", posArgs)
	}
}

func TestParseList(t *testing.T) {
	got := ParseList(" a, b ,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %q", got)
	}
	if ParseList("") != nil {
		t.Fatal("empty list should be nil")
	}
}

func TestParseReference(t *testing.T) {
	m, err := ParseReference("diagnosis, nonIBD; site,Boston;")
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m["diagnosis"] != "nonIBD" || m["site"] != "Boston" {
		t.Fatalf("got %v", m)
	}
	for _, bad := range []string{"diagnosis", "a,;b,c", "a,x;a,y"} {
		if _, err := ParseReference(bad); err == nil {
			t.Fatalf("%q: want error", bad)
		}
	}
}

func TestParseFallback(t *testing.T) {
	m, err := ParseFallback("zicp=LM, CPLM=none")
	if err != nil {
		t.Fatal(err)
	}
	if m[family.ZICP] != family.LM || m[family.CPLM] != family.None || len(m) != 2 {
		t.Fatalf("got %v", m)
	}
	for _, bad := range []string{"ZICP", "ZICP=poisson", "x=LM"} {
		if _, err := ParseFallback(bad); err == nil {
			t.Fatalf("%q: want error", bad)
		}
	}
}
