// Package universe provides scripted operand type systems for exercising
// override dispatch. A universe declares operations and a forest of operand
// types; each type states how its operands participate in dispatch (none,
// disabled, or scripted) and, when scripted, what its handler does per
// operation (decline, return a value, fail, or delegate to another
// operation).
//
// The dispatch core only ever sees the Operand and RuntimeType interfaces;
// universes exist so the harness, CLI, and tests can describe dispatch
// scenarios as data. Override modes and behaviors are NOT inherited along
// the parent chain: parents matter only for subtype ranking.
package universe
