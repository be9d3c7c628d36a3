package placement

import (
	"strings"

	"github.com/armadaproject/podscheduler/internal/model"
)

// Field is a property of an offer that placement rules can constrain.
type Field int

const (
	FieldHostname Field = iota
	FieldAttribute
	FieldZone
	FieldRegion
)

var fieldNames = map[Field]string{
	FieldHostname:  "HOSTNAME",
	FieldAttribute: "ATTRIBUTE",
	FieldZone:      "ZONE",
	FieldRegion:    "REGION",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "UNKNOWN"
}

func (f Field) valid() bool {
	_, ok := fieldNames[f]
	return ok
}

// description is how the field is referred to in evaluation reasons.
func (f Field) description() string {
	return strings.ToLower(f.String())
}

func ParseField(s string) (Field, bool) {
	for field, name := range fieldNames {
		if strings.EqualFold(name, s) {
			return field, true
		}
	}
	return 0, false
}

// ExtractKeys returns the values of field in offer, in offer order.
// Attributes are rendered as "name:value". Fields the offer doesn't have yield no keys.
func ExtractKeys(field Field, offer *model.Offer) []string {
	keys := make([]string, 0, 1)
	switch field {
	case FieldHostname:
		if hostname := offer.GetHostname(); hostname != "" {
			keys = append(keys, hostname)
		}
	case FieldAttribute:
		for _, attribute := range offer.GetAttributes() {
			keys = append(keys, attribute.String())
		}
	case FieldZone:
		if zone := offer.GetDomain().GetZone(); zone != "" {
			keys = append(keys, zone)
		}
	case FieldRegion:
		if region := offer.GetDomain().GetRegion(); region != "" {
			keys = append(keys, region)
		}
	}
	return keys
}

// extractTaskKeys returns the values of field for the offer task was launched on.
func extractTaskKeys(field Field, task *model.TaskInfo) []string {
	return ExtractKeys(field, &model.Offer{
		AgentID:    task.AgentID,
		Hostname:   task.Hostname,
		Attributes: task.Attributes,
		Domain:     task.Domain,
	})
}
