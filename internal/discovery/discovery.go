// Package discovery advertises the controller on the LAN via mDNS/DNS-SD
// so companion UIs can find it without a fixed address: create a Service,
// attach it to a Responder, and run the responder in the background for
// the life of the process.
package discovery

import (
	"context"
	"log"

	"github.com/brutella/dnssd"
)

// ServiceType is the DNS-SD service type the controller advertises itself
// under. Companion UIs can browse for it with any mDNS client.
const ServiceType = "_dmxengine._tcp"

// Advertiser announces the controller's REST port over mDNS until Stop is
// called.
type Advertiser struct {
	cancel context.CancelFunc
}

// Start begins advertising name on port over mDNS. A failure to create the
// service or responder is logged and treated as non-fatal — discovery is
// additive, never load-bearing for core operation.
func Start(name string, port int) *Advertiser {
	if name == "" {
		name = "dmx-lighting-engine"
	}

	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		log.Printf("⚠️  discovery: failed to create service record: %v", err)
		return &Advertiser{cancel: func() {}}
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		log.Printf("⚠️  discovery: failed to create responder: %v", err)
		return &Advertiser{cancel: func() {}}
	}

	if _, err := responder.Add(svc); err != nil {
		log.Printf("⚠️  discovery: failed to register service: %v", err)
		return &Advertiser{cancel: func() {}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			log.Printf("⚠️  discovery: responder exited: %v", err)
		}
	}()

	log.Printf("📡 discovery: advertising port %d on %s as %q", port, ServiceType, name)
	return &Advertiser{cancel: cancel}
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	if a != nil && a.cancel != nil {
		a.cancel()
	}
}
