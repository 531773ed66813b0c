// Package challenge implements coordinate selection for grid-card
// authentication attempts and the constant-time response comparison.
//
// Both operate on borrowed, read-only views of a card and never retain
// references beyond a single call.
package challenge
