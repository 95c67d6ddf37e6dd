// Package checkpoint persists the single snapshot of a training session:
// dataset summary, model configuration and last known training status.
//
// A Store serializes the snapshot as JSON into one Slot stored under
// StorageKey. Slots are available for a file in the platform data
// directory, the OS keychain and process memory, and any of them can be
// wrapped in an EncryptedSlot:
//   - Linux: $XDG_DATA_HOME/visionlab or ~/.local/share/visionlab
//   - macOS: ~/Library/Application Support/visionlab
//   - Windows: %APPDATA%/visionlab
//
// Saving always overwrites; there is no merge. Load treats an empty slot,
// malformed JSON and a snapshot that fails validation alike and returns nil.
package checkpoint
