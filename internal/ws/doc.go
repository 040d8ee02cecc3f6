/*
Package ws provides the per-session WebSocket event stream.

# Overview

Each session owns a Hub that fans events out to connected clients and
doubles as the behavior monitor's permission prompt sink. Prompts raised
before any client connects are queued and replayed on connect.

# Protocol

Outbound events carry a type, an optional payload, and a Unix timestamp:

	{"type": "permission_prompt", "payload": {...}, "timestamp": 1700000000}

Inbound messages answer prompts ("permission_response"), inject user
events ("click", "scroll"), request a fresh scan ("scan"), or keep the
connection alive ("ping").
*/
package ws
