// Package engine hosts chat worlds and drives the message pipeline.
//
// For every dispatched message the engine
//
//  1. appends it to the chat log and publishes it,
//  2. replicates it into the memory of every roster agent,
//  3. evaluates each agent concurrently: human input resets the agent's turn
//     counter, the addressing rules decide eligibility, an exhausted budget
//     produces a turn-limit redirect instead of a model call,
//  4. composes the model output and dispatches the reply, which starts the
//     same sequence again.
//
// Replication always completes before any agent of that message is
// evaluated. Each agent runs at most one turn at a time; other agents are
// never blocked by it. Turn-limit redirects and pass-control handoffs are
// recorded and published but do not trigger further turns, so a cascade is
// bounded by the turn limits of the roster.
//
// Cancellation: Stop cancels the in-flight turns of a chat. A model result
// is either fully recorded (counter incremented, reply replicated) or
// dropped; no partial writes happen.
//
// Example:
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.LLM = router
//	    o.Publisher = broker
//	})
//	_, _ = eng.RegisterWorld(core.WorldConfig{ID: "w1", ChatID: "main"}, profiles...)
//	msg, err := eng.ReceiveMessage(ctx, "w1", "main", "hi all", core.SenderHuman)
package engine
