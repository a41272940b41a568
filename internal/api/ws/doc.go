// Package ws streams host events to the presentation layer and collects
// permission decisions from it.
//
// Outbound messages:
//
//	{"type":"lifecycle","event":"launched","instance":{...},"at":"..."}
//	{"type":"permission_prompt","id":"prm_…","widget_id":"…","widget_name":"…","capability":"…","label":"…","reason":"…"}
//	{"type":"permission_resolved","id":"prm_…"}
//	{"type":"permission_expired","id":"prm_…"}
//	{"type":"permission_changed","widget_id":"…","permission":"…","granted":true}
//
// Inbound messages:
//
//	{"type":"permission_decision","id":"prm_…","allow":true}
//	{"type":"ping"}
//
// The Hub is the host's permission.Prompter. A prompt is broadcast to every
// connected client; the first decision wins and the others are told to
// dismiss it. With no client connected a prompt fails immediately.
package ws
