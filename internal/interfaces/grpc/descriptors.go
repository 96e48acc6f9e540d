package grpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ServiceName is the fully qualified name of the claims gRPC service
const ServiceName = "claims.ClaimsService"

// RPC names
const (
	MethodSubmitClaim           = "SubmitClaim"
	MethodGetClaim              = "GetClaim"
	MethodListClaimsForCustomer = "ListClaimsForCustomer"
	MethodApproveClaim          = "ApproveClaim"
	MethodRejectClaim           = "RejectClaim"
	MethodMarkClaimPaidOut      = "MarkClaimPaidOut"
	MethodStartReview           = "StartReview"
)

// The claims API is described at runtime and served through dynamicpb.
// Amounts travel as decimal strings and timestamps as RFC 3339 strings.
//
//	enum ClaimStatus { CLAIM_STATUS_UNSPECIFIED = 0; CLAIM_STATUS_SUBMITTED = 1; CLAIM_STATUS_IN_REVIEW = 2;
//	                   CLAIM_STATUS_APPROVED = 3; CLAIM_STATUS_REJECTED = 4; CLAIM_STATUS_PAID_OUT = 5; }
//	message Claim { string id = 1; string policy_id = 2; string customer_id = 3; string description = 4;
//	                string reported_amount = 5; ClaimStatus status = 6; bool approved = 7;
//	                string approved_amount = 8; string decision_reason = 9; string created_at = 10;
//	                string last_updated_at = 11; int64 version = 12; repeated string allowed_actions = 13; }
//	message SubmitClaimRequest  { string policy_id = 1; string customer_id = 2; string description = 3;
//	                              string reported_amount = 4; }
//	message ClaimIdRequest      { string claim_id = 1; }
//	message ApproveClaimRequest { string claim_id = 1; string approved_amount = 2; string reason = 3; }
//	message RejectClaimRequest  { string claim_id = 1; string reason = 2; }
//	message ListClaimsForCustomerRequest { string customer_id = 1; }
//	message ClaimResponse       { Claim claim = 1; }
//	message ListClaimsResponse  { repeated Claim claims = 1; }
var (
	claimsFile = mustFile(claimsFileProto())

	claimStatusDesc        = claimsFile.Enums().ByName("ClaimStatus")
	claimDesc              = claimsFile.Messages().ByName("Claim")
	submitRequestDesc      = claimsFile.Messages().ByName("SubmitClaimRequest")
	claimIDRequestDesc     = claimsFile.Messages().ByName("ClaimIdRequest")
	approveRequestDesc     = claimsFile.Messages().ByName("ApproveClaimRequest")
	rejectRequestDesc      = claimsFile.Messages().ByName("RejectClaimRequest")
	listRequestDesc        = claimsFile.Messages().ByName("ListClaimsForCustomerRequest")
	claimResponseDesc      = claimsFile.Messages().ByName("ClaimResponse")
	listClaimsResponseDesc = claimsFile.Messages().ByName("ListClaimsResponse")
)

func mustFile(fd *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	file, err := protodesc.NewFile(fd, new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("grpc: invalid descriptor %s: %v", fd.GetName(), err))
	}
	return file
}

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func rpc(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(".claims." + input),
		OutputType: proto.String(".claims." + output),
	}
}

func claimsFileProto() *descriptorpb.FileDescriptorProto {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING

	statuses := []string{
		"CLAIM_STATUS_UNSPECIFIED",
		"CLAIM_STATUS_SUBMITTED",
		"CLAIM_STATUS_IN_REVIEW",
		"CLAIM_STATUS_APPROVED",
		"CLAIM_STATUS_REJECTED",
		"CLAIM_STATUS_PAID_OUT",
	}
	status := &descriptorpb.EnumDescriptorProto{Name: proto.String("ClaimStatus")}
	for i, name := range statuses {
		status.Value = append(status.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(int32(i)),
		})
	}

	return &descriptorpb.FileDescriptorProto{
		Name:     proto.String("claims.proto"),
		Package:  proto.String("claims"),
		Syntax:   proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{status},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Claim",
				field("id", 1, str, ""),
				field("policy_id", 2, str, ""),
				field("customer_id", 3, str, ""),
				field("description", 4, str, ""),
				field("reported_amount", 5, str, ""),
				field("status", 6, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".claims.ClaimStatus"),
				field("approved", 7, descriptorpb.FieldDescriptorProto_TYPE_BOOL, ""),
				field("approved_amount", 8, str, ""),
				field("decision_reason", 9, str, ""),
				field("created_at", 10, str, ""),
				field("last_updated_at", 11, str, ""),
				field("version", 12, descriptorpb.FieldDescriptorProto_TYPE_INT64, ""),
				repeated(field("allowed_actions", 13, str, "")),
			),
			message("SubmitClaimRequest",
				field("policy_id", 1, str, ""),
				field("customer_id", 2, str, ""),
				field("description", 3, str, ""),
				field("reported_amount", 4, str, ""),
			),
			message("ClaimIdRequest", field("claim_id", 1, str, "")),
			message("ApproveClaimRequest",
				field("claim_id", 1, str, ""),
				field("approved_amount", 2, str, ""),
				field("reason", 3, str, ""),
			),
			message("RejectClaimRequest",
				field("claim_id", 1, str, ""),
				field("reason", 2, str, ""),
			),
			message("ListClaimsForCustomerRequest", field("customer_id", 1, str, "")),
			message("ClaimResponse",
				field("claim", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".claims.Claim")),
			message("ListClaimsResponse",
				repeated(field("claims", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".claims.Claim"))),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("ClaimsService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				rpc(MethodSubmitClaim, "SubmitClaimRequest", "ClaimResponse"),
				rpc(MethodGetClaim, "ClaimIdRequest", "ClaimResponse"),
				rpc(MethodListClaimsForCustomer, "ListClaimsForCustomerRequest", "ListClaimsResponse"),
				rpc(MethodApproveClaim, "ApproveClaimRequest", "ClaimResponse"),
				rpc(MethodRejectClaim, "RejectClaimRequest", "ClaimResponse"),
				rpc(MethodMarkClaimPaidOut, "ClaimIdRequest", "ClaimResponse"),
				rpc(MethodStartReview, "ClaimIdRequest", "ClaimResponse"),
			},
		}},
	}
}

// FullMethod returns the wire name of an RPC, e.g. /claims.ClaimsService/GetClaim
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
