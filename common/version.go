package common

// ModuleVersion is logged at the top of every run log and reported by the health probe.
const ModuleVersion = "1.0.0"
