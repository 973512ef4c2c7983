package ir

// IRVersion identifies the record schema carried by Resolution and Attempt.
// Bump when the canonical form of a record changes incompatibly.
const IRVersion = "1"

// EngineVersion identifies the dispatch engine build that produced a record.
const EngineVersion = "0.1.0"
