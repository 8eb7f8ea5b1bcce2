// Package notify is the client side of the push-notification flow: permission
// negotiation, push token acquisition, local and remote dispatch, and
// listener lifecycle. The operating environment is reached through a
// platform.Host; remote pushes go through a Sender.
package notify
