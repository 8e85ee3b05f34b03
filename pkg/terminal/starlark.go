package terminal

import (
	"github.com/memscout/memscout/pkg/memscan"
	"github.com/memscout/memscout/pkg/terminal/starbind"
)

type starlarkContext struct {
	term *Term
}

var _ starbind.Context = starlarkContext{}

func (ctx starlarkContext) Session() (*memscan.Session, error) {
	return ctx.term.requireSession()
}

func (ctx starlarkContext) Candidates() *memscan.CandidateSet {
	return ctx.term.candidates
}

func (ctx starlarkContext) SetCandidates(set *memscan.CandidateSet) {
	ctx.term.undo.push("scan", ctx.term.candidates)
	ctx.term.candidates = set
}

func (ctx starlarkContext) ActiveKind() memscan.ValueKind {
	return ctx.term.activeKind()
}

func (ctx starlarkContext) RegisterCommand(name, helpMsg string, fn func(args string) error) {
	cmdfn := func(t *Term, args string) error {
		return fn(args)
	}

	ctx.term.cmds.Register(name, cmdfn, helpMsg)
	ctx.term.buildAliasIndex()
}

func (ctx starlarkContext) CallCommand(cmdstr string) error {
	return ctx.term.cmds.Call(cmdstr, ctx.term)
}
