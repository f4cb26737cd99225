// Package audio plays the typing sound effect and background music using
// the oto/v3 library. Clips are synthesized or decoded with beep and kept
// as 16-bit stereo PCM.
package audio
