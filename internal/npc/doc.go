// Package npc loads the character roster: personality sheets with YAML front
// matter, optional ASCII portraits, and the system prompt built from them.
package npc
