package demo

import (
	"bytes"
	"strings"
	"testing"
)

func TestGameTransitions(t *testing.T) {
	g := NewGame()

	if g.Health != 100 || g.Coins != 50 || g.Stamina != 100.0 || g.Score != 0 {
		t.Fatalf("wrong starting state: %+v", g)
	}

	g.Damage()
	if g.Health != 90 {
		t.Errorf("expected health 90, got %d", g.Health)
	}
	g.Spend()
	if g.Coins != 45 {
		t.Errorf("expected coins 45, got %d", g.Coins)
	}
	g.Rest()
	if g.Stamina != 87.5 {
		t.Errorf("expected stamina 87.5, got %g", g.Stamina)
	}
	g.Train()
	if g.Score != 100 {
		t.Errorf("expected score 100, got %d", g.Score)
	}
}

func TestRunLoop(t *testing.T) {
	in := strings.NewReader("damage\ndamage\nbogus\nshow\nquit\n")
	out := new(bytes.Buffer)

	if err := Run(in, out); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.Contains(s, "pid ") {
		t.Error("pid not printed")
	}
	if !strings.Contains(s, "health  = 80") {
		t.Errorf("damage commands not applied:\n%s", s)
	}
	if !strings.Contains(s, "commands: damage, spend, rest, train, show, quit") {
		t.Error("unknown command help not printed")
	}
}

func TestRunLoopEOF(t *testing.T) {
	if err := Run(strings.NewReader("train\n"), new(bytes.Buffer)); err != nil {
		t.Fatal(err)
	}
}
