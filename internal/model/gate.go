package model

// GateSatisfied is the session_gates status of a set flag.
const GateSatisfied = "satisfied"

// GateRules is the gate ID of the "all rule sections read" flag.
const GateRules = "rules"
