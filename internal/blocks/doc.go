// Package blocks is a library of concrete blocks: algebraic operators,
// transfer-function blocks and common nonlinearities.
package blocks
