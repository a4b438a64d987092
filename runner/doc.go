// Package runner drives chat worlds on behalf of a front end.
//
// The engine delivers events through a core.Publisher. The Runner pairs the
// engine with a pubsub.Broker (which must be the engine's publisher), so a
// caller can submit one message and consume the events of the resulting
// cascade as a stream:
//
//	runID, events, errs, err := r.Run(ctx, "w1", "main", "@alice hi", core.SenderHuman)
//	for ev := range events {
//	    fmt.Println(runner.FormatEvent(ev))
//	}
//	if err := <-errs; err != nil { ... }
//
// Chat builds an interactive line-oriented session on top of Run, used by
// the agentworld CLI.
package runner
