// Package profile loads variable declarations from CUE files and applies
// them to a shell.
//
// A profile declares variables under a top-level vars struct:
//
//	vars: {
//		PATH:   {value: "/usr/bin:/bin", export: true}
//		count:  {type: "integer", value: "0"}
//		grid:   {type: "fixed", dims: [3, 3]}
//		colors: {type: "assoc", values: {red: "ff0000"}}
//	}
//
// Every file is unified with a closed schema, so unknown fields and bad
// types fail at load time with E201. Validate then checks the rules the
// schema cannot express and reports all problems at once (E202-E207).
package profile
