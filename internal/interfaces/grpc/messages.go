package grpc

import (
	"strings"
	"time"

	"github.com/govalues/decimal"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

func stringField(msg *dynamicpb.Message, name string) string {
	return msg.Get(msg.Descriptor().Fields().ByName(protoreflect.Name(name))).String()
}

func setString(msg *dynamicpb.Message, name, value string) {
	msg.Set(msg.Descriptor().Fields().ByName(protoreflect.Name(name)), protoreflect.ValueOfString(value))
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	d, err := decimal.Parse(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, badRequest("%s must be a decimal number", field)
	}
	return d, nil
}

// statusNumber maps a claim status onto the ClaimStatus enum; unknown
// statuses map to CLAIM_STATUS_UNSPECIFIED
func statusNumber(c *entity.Claim) protoreflect.EnumNumber {
	value := claimStatusDesc.Values().ByName(protoreflect.Name("CLAIM_STATUS_" + c.Status.String()))
	if value == nil {
		return 0
	}
	return value.Number()
}

func toClaimMessage(c *entity.Claim) *dynamicpb.Message {
	msg := dynamicpb.NewMessage(claimDesc)
	fields := claimDesc.Fields()

	setString(msg, "id", c.ID)
	setString(msg, "policy_id", c.PolicyRef)
	setString(msg, "customer_id", c.CustomerRef)
	setString(msg, "description", c.Description)
	setString(msg, "reported_amount", c.ReportedAmount.String())
	msg.Set(fields.ByName("status"), protoreflect.ValueOfEnum(statusNumber(c)))
	msg.Set(fields.ByName("approved"), protoreflect.ValueOfBool(c.IsApproved()))
	if c.Decision != nil {
		setString(msg, "approved_amount", c.Decision.ApprovedAmount.String())
		setString(msg, "decision_reason", c.Decision.Reason)
	}
	setString(msg, "created_at", c.CreatedAt.UTC().Format(time.RFC3339Nano))
	setString(msg, "last_updated_at", c.LastUpdatedAt.UTC().Format(time.RFC3339Nano))
	msg.Set(fields.ByName("version"), protoreflect.ValueOfInt64(c.Version))

	actions := msg.Mutable(fields.ByName("allowed_actions")).List()
	for _, trigger := range c.AllowedActions() {
		actions.Append(protoreflect.ValueOfString(trigger.String()))
	}
	return msg
}

func claimResponse(c *entity.Claim) *dynamicpb.Message {
	resp := dynamicpb.NewMessage(claimResponseDesc)
	resp.Set(claimResponseDesc.Fields().ByName("claim"), protoreflect.ValueOfMessage(toClaimMessage(c)))
	return resp
}

func listClaimsResponse(claims []*entity.Claim) *dynamicpb.Message {
	resp := dynamicpb.NewMessage(listClaimsResponseDesc)
	list := resp.Mutable(listClaimsResponseDesc.Fields().ByName("claims")).List()
	for _, c := range claims {
		list.Append(protoreflect.ValueOfMessage(toClaimMessage(c)))
	}
	return resp
}
