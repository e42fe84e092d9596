/*
Package ratelimit provides adaptive admission control at the service
boundary.

Each inbound request is checked against a sliding-window counter for its
(identity, endpoint class) pair. Exceeding the class budget within a window
is a violation; repeated violations escalate to a temporary full ban whose
clock restarts on every request the banned identity makes. The governor
composes the two:

	admit ──► banned? ──yes──► Ban(retry-after)
	            │no
	            ▼
	    window counter hit
	            │
	    over budget? ──yes──► record violation ──► Deny(retry-after)
	            │no
	            ▼
	    Allow + quota headers

All state is owned by the governor instance, bounded, and cleaned
opportunistically from the admission path itself, so no background
scheduler is required. The governor fails open: when its own bookkeeping
misbehaves the request is admitted, never dropped.
*/
package ratelimit
