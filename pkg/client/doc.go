/*
Package client speaks the collector's message-channel protocol.

Two client types cover the three endpoints:

Client is the push side. It keeps one channel to /event open and ships
serialized events down it; the watcher is its main user.

	c, err := client.Dial(ctx, "collector:6433")
	...
	err = c.Send(ev)

Query covers /find and /live. Find sends one filter and invokes the
callback for every historical event until the server closes the
channel; Live does the same but runs until the context is cancelled or
the collector goes away.

	q := client.NewQuery("collector:6433")
	err := q.Find(ctx, &filter.Filter{Tags: []string{"web.*"}}, func(ev *model.Event) error {
		fmt.Println(ev.Content)
		return nil
	})

Returning an error from the callback stops the stream and surfaces that
error. A one-line error message sent by the collector in place of the
stream (a rejected filter) comes back as a ServerError.

Neither client retries; reconnect policy belongs to the caller.
*/
package client
