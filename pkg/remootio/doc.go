// Package remootio is a client for the Remootio garage door controller API.
//
// A Client holds one encrypted session with one device:
//
//	client, err := remootio.NewClient(remootio.ClientConfig{
//	    Host:      "192.168.1.50",
//	    SecretKey: "<api secret key hex>",
//	    AuthKey:   "<api auth key hex>",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if _, err := client.Authenticate(ctx); err != nil {
//	    return err
//	}
//	state, err := client.SendCommand(ctx, message.CommandQuery)
//
// Any failed exchange drops the session and marks the client unavailable.
// The next call must authenticate again; Do does that automatically.
//
// Cover wraps a Client with garage-door semantics: open, close and periodic
// state polling.
package remootio
