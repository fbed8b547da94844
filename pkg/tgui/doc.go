// Package tgui holds small helpers for composing Telegram messages in
// ParseMode="HTML": escaping, links and rune-safe truncation.
package tgui
