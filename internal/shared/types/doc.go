// Package types provides shared data structures for the script-governance
// backend.
//
// This package defines core types used across all components, ensuring
// consistent data structures between the page runtime, the monitors, and
// the API surface.
//
// Core Types:
//   - ScriptRecord: One discovered script with classification, behavior
//     flags, dependency shape, and trust score
//   - TrustScore: Clamped 0-100 score with recommendation and factors
//   - DependencyInfo: Per-script view of the load graph
//   - DelayRule: Deferred-execution configuration for one script
//
// Enumerations:
//   - Category: Tracking, Ads, UX, Functional, Suspicious, Unknown
//   - Source: First Party, Third Party, WASM
//   - ScriptType: external, module, inline, dynamic, wasm
//   - Recommendation: safe, neutral, caution, block
//
// Behavior flag and permission action names live here so the monitor,
// scorer, and API agree on the exact strings.
package types
