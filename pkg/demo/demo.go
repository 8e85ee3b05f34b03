// Package demo implements a small interactive practice target. Its
// state lives at stable heap addresses so it can be scanned, modified
// and frozen from another mscout process.
package demo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Game is the practice target's state. Every field is one of the
// scannable value kinds.
type Game struct {
	Health  int32
	Coins   int64
	Stamina float64
	Score   int32
}

// NewGame returns a Game with its starting values.
func NewGame() *Game {
	return &Game{
		Health:  100,
		Coins:   50,
		Stamina: 100.0,
		Score:   0,
	}
}

// Damage removes 10 health.
func (g *Game) Damage() {
	g.Health -= 10
}

// Spend removes 5 coins.
func (g *Game) Spend() {
	g.Coins -= 5
}

// Rest consumes 12.5 stamina.
func (g *Game) Rest() {
	g.Stamina -= 12.5
}

// Train adds 100 score.
func (g *Game) Train() {
	g.Score += 100
}

// Show prints the current state with the address of each field.
func (g *Game) Show(w io.Writer) {
	fmt.Fprintf(w, "health  = %d\t(int32 at %p)\n", g.Health, &g.Health)
	fmt.Fprintf(w, "coins   = %d\t(int64 at %p)\n", g.Coins, &g.Coins)
	fmt.Fprintf(w, "stamina = %g\t(float64 at %p)\n", g.Stamina, &g.Stamina)
	fmt.Fprintf(w, "score   = %d\t(int32 at %p)\n", g.Score, &g.Score)
}

// Run starts the interactive loop, reading commands from in until quit
// or EOF.
func Run(in io.Reader, out io.Writer) error {
	g := NewGame()
	fmt.Fprintf(out, "practice target running, pid %d\n", os.Getpid())
	fmt.Fprintln(out, "commands: damage, spend, rest, train, show, quit")
	g.Show(out)

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "damage":
			g.Damage()
			g.Show(out)
		case "spend":
			g.Spend()
			g.Show(out)
		case "rest":
			g.Rest()
			g.Show(out)
		case "train":
			g.Train()
			g.Show(out)
		case "show":
			g.Show(out)
		case "quit", "q", "exit":
			return nil
		case "":
		default:
			fmt.Fprintln(out, "commands: damage, spend, rest, train, show, quit")
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
