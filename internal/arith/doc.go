// Package arith evaluates shell arithmetic for the variable engine.
//
// Evaluator implements nv.Arith. Literals (decimal, 0x hex, base#digits,
// floats) are parsed directly. Anything else is evaluated as a Starlark
// expression, with each identifier bound to the numeric value of the shell
// variable of that name (unset variables are 0). The C-style logical
// operators &&, || and ! are accepted and mapped onto Starlark's and, or and
// not. Results must be numeric; booleans become 1 and 0.
package arith
