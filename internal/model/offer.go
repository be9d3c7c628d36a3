package model

import (
	"fmt"
)

// Attribute is a name/value pair advertised by an agent, e.g. rack:rack-1.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// String returns the attribute in name:value form, which is the form matched by attribute placement rules.
func (a Attribute) String() string {
	return fmt.Sprintf("%s:%s", a.Name, a.Value)
}

// FaultDomain describes where an agent lives. Either field may be empty if the cluster doesn't report it.
type FaultDomain struct {
	Region string `json:"region,omitempty"`
	Zone   string `json:"zone,omitempty"`
}

func (d *FaultDomain) Equal(other *FaultDomain) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Region == other.Region && d.Zone == other.Zone
}

// GetRegion returns the region, or "" if d is nil.
func (d *FaultDomain) GetRegion() string {
	if d == nil {
		return ""
	}
	return d.Region
}

// GetZone returns the zone, or "" if d is nil.
func (d *FaultDomain) GetZone() string {
	if d == nil {
		return ""
	}
	return d.Zone
}

// Offer describes resources available on one agent. Only the fields consulted by placement are modelled.
type Offer struct {
	ID         string       `json:"id"`
	AgentID    string       `json:"agentId"`
	Hostname   string       `json:"hostname"`
	Attributes []Attribute  `json:"attributes,omitempty"`
	Domain     *FaultDomain `json:"domain,omitempty"`
}

func (o *Offer) GetHostname() string {
	if o == nil {
		return ""
	}
	return o.Hostname
}

func (o *Offer) GetAttributes() []Attribute {
	if o == nil {
		return nil
	}
	return o.Attributes
}

func (o *Offer) GetDomain() *FaultDomain {
	if o == nil {
		return nil
	}
	return o.Domain
}

func attributesEqual(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
