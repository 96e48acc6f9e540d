package grpclookup

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Message shapes of the policy and customer gRPC APIs. They are described at
// runtime and used through dynamicpb, so no generated stubs are needed.
//
//	message GetPolicyRequest  { string policy_id = 1; }
//	message Policy            { string id = 1; string policy_number = 2; string product_code = 3;
//	                            string status = 4; string valid_from = 5; string valid_to = 6; }
//	message GetPolicyResponse { Policy policy = 1; }
//
//	message CustomerValidationRequest  { string customer_number = 1; }
//	message CustomerValidationResponse { bool valid = 1; }
var (
	policyFile   = mustFile(policyFileProto())
	customerFile = mustFile(customerFileProto())

	getPolicyRequestDesc  = policyFile.Messages().ByName("GetPolicyRequest")
	getPolicyResponseDesc = policyFile.Messages().ByName("GetPolicyResponse")
	policyDesc            = policyFile.Messages().ByName("Policy")

	customerRequestDesc  = customerFile.Messages().ByName("CustomerValidationRequest")
	customerResponseDesc = customerFile.Messages().ByName("CustomerValidationResponse")
)

func mustFile(fd *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	file, err := protodesc.NewFile(fd, new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("grpclookup: invalid descriptor %s: %v", fd.GetName(), err))
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

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func policyFileProto() *descriptorpb.FileDescriptorProto {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("policies.proto"),
		Package: proto.String("policies"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("GetPolicyRequest", field("policy_id", 1, str, "")),
			message("Policy",
				field("id", 1, str, ""),
				field("policy_number", 2, str, ""),
				field("product_code", 3, str, ""),
				field("status", 4, str, ""),
				field("valid_from", 5, str, ""),
				field("valid_to", 6, str, ""),
			),
			message("GetPolicyResponse",
				field("policy", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".policies.Policy")),
		},
	}
}

func customerFileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("customers.proto"),
		Package: proto.String("customers"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("CustomerValidationRequest",
				field("customer_number", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, "")),
			message("CustomerValidationResponse",
				field("valid", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL, "")),
		},
	}
}
