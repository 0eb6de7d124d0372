// Package logs reads the reelgen log file for the "reelgen logs" command.
//
// Tail returns the last N lines, optionally only those mentioning a run or
// beat, and follow mode polls for appended lines until the context ends.
package logs
