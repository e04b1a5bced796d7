// Package stores defines the three mirrored stores of the client and wires
// them to the durable store and the sync coordinator.
//
// Stores:
//   - [LocalStore] : categories cache, watch-later list, followed authors, remembered account
//   - [UserStore] : session token and profile
//   - [SettingStore] : reader settings
//
// [Open] builds all three, loads them from storage and registers each with a
// [tabsync.Coordinator] according to its [shared.StoreSyncConfig].
package stores
