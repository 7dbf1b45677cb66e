// Package termrun is a terminal application runtime. It wires three
// concurrent actors: a lifecycle manager (the Runtime), an event
// dispatcher owning the application model, and a terminal driver
// normalizing raw input. Applications implement Update and optionally
// Init, View and Name; the runtime handles readiness gating, startup
// command replay, render scheduling and shutdown.
package termrun
