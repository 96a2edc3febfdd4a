// Package conversation creates conversations and hands out their keys.
//
// Creating a conversation generates a fresh conversation key and one
// permission per participant, signed by the current device and sealed to
// each participant's encryption public key.
package conversation
