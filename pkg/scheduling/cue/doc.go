/*
Package cue fires named show cues on cron schedules.

Expressions have six fields, seconds first, so a cue can land on an exact
second of a show:

	s, _ := cue.New(cue.DefaultConfig())
	_ = s.Add("doors", "0 30 19 * * *")           // 19:30:00 every day
	_ = s.Add("strobe", "0/15 * * * * *")         // every 15 seconds
	_ = s.Add("finale", "0 0 22 * * SAT", cue.Options{MaxFires: 1})
	s.Start()
	defer s.Stop(ctx)

Every firing is published as an Event on the scheduler's broadcast, which
makes a Scheduler a broadcast.Source like any input device. Fire triggers a
cue by hand, for a GO button that shares a cue's downstream wiring.
*/
package cue
