// Package ws serves the live draft feed at /ws?event=<id>&user_id=<id>.
//
// Client -> Server
// SubmitPick:
//   player_id: string
//
// Server -> Client
// StateSnapshot (on join, then once per committed pick):
//   version: number
//   turn: { event_id, current_drafter: {user_id, display_name} | null,
//           current_pick_number, round, is_complete, picks_made,
//           roster_cap, remaining: { [user_id]: number } }
//   last_pick: { event_id, user_id, username, player_id, player_name,
//                pick_number, created_at } // absent before the first pick
//
// PickAccepted (only to the submitting connection):
//   pick: same shape as last_pick
//
// Error:
//   error: { code: string, message: string }
//   codes: draft_closed | not_your_turn | roster_full |
//          player_already_drafted | unknown_player |
//          concurrent_modification | bad_request | unauthenticated | internal
package ws
