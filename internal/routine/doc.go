// Package routine defines routines and their durable store.
//
// A routine has exactly one trigger and an ordered list of one to twenty
// device actions:
//
//   - Time trigger: fires at HH:MM on the listed weekdays (0 = Sunday);
//     an empty weekday list means every day.
//   - Interval trigger: fires every N minutes, N in [1, 1440].
//
//   - Toggle action: switch a device on or off.
//   - Command action: invoke capability/command with arguments.
//
// Create and Update accept a Payload. Update is a partial merge: only the
// top-level fields present in the payload change. Invalid actions are
// dropped; a payload whose surviving action list is empty is rejected.
//
// The collection is persisted as {"routines": [...]} and rewritten in full
// on every mutation. A mutation is built on a copy and only becomes visible
// in memory after the file has been written, so a failed write never
// leaves memory ahead of disk.
package routine
