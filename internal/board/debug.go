package board

// DebugMoveValidation enables expensive consistency assertions (occupancy
// sums, Zobrist agreement, king presence) at search and move-application
// boundaries. Invariant violations are fatal when this is set and salvaged
// silently when it is not. Toggled at runtime via "setoption name Debug".
var DebugMoveValidation bool
