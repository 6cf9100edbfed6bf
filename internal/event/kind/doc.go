// Package kind names event types.
//
// A Kind is a dot-separated identifier such as "player.join" or
// "block.break". Each Kind owns exactly one handler list in an event
// registry, so kinds are compared as plain strings.
//
// # Patterns
//
// Patterns are used only for listing and bulk inspection, never for
// dispatch:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// Examples:
//
//	player.*      matches player.join, player.chat (not player.move.teleport)
//	player.**     matches player.join, player.move.teleport
//	*.break       matches block.break
//	**            matches everything
package kind
