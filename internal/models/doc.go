// Package models defines the state records kept by the picasync stores.
//
// The package contains two categories of types:
//
// 1. API payloads: structs decoded from the comic API
//   - [Category] : A catalog category
//   - [Comic] : Comic summary as listed by the catalog, kept in the watch-later list
//   - [UserProfile] : Signed-in user's profile
//
// 2. Store records: the state struct owned by each store's mirror
//   - [Local] : Locally cached lists and credentials (local store)
//   - [UserState] : Session token and cached profile (user store)
//   - [SettingState] : Per-device reader settings (setting store)
//
// Every record is JSON round-trippable. JSON field names are the names used in
// sync messages and include/exclude lists.
package models
