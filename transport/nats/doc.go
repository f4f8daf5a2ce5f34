// Package nats publishes memory game events to a NATS server.
//
// Every engine event of every session is sent as JSON on
//
//	memory.sessions.<session_id>.<event_type>
//
// so observers can follow one session (memory.sessions.ab12.>) or one kind of
// event across sessions (memory.sessions.*.game_won). Publishing is fire and
// forget; errors are logged.
package nats
