// Package tokenizer counts tokens for history budgeting.
//
// Tiktoken loads its BPE ranks lazily (possibly downloading them on first use);
// when that fails the counter degrades to a character-based estimate.
package tokenizer
