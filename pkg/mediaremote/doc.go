// Package mediaremote ties the pairing, message and transport packages
// together into a controller Device and a responding Accessory.
//
// A controller session runs in three steps:
//
//	dev, _ := mediaremote.Dial(ctx, "10.0.0.12:49152", mediaremote.DeviceConfig{})
//	info, _ := dev.Introduce(ctx)
//	creds, _ := dev.Pair(ctx, readPIN) // once, then store creds
//	_ = dev.Verify(ctx, creds)         // every connection
//
// After Verify returns, every message on the connection is encrypted with
// the session keys. The Accessory runs the same exchanges from the other
// end for each connection it accepts.
package mediaremote
