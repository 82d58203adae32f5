package errors

import "google.golang.org/grpc/codes"

// Common errors shared by all services (service code 00).
var (
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters"))
	ErrNotFound     = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), 404, codes.NotFound, "Resource not found"))
	ErrInternal     = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), 500, codes.Internal, "Internal server error"))
	ErrCache        = Register(New(MakeCode(ServiceInfraCache, CategoryCache, 1), 500, codes.Internal, "Cache operation failed"))
)

// Knowledge service errors (service code 30).
var (
	// Request errors (category 01)
	ErrKnowledgeInvalidRequest  = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters"))
	ErrKnowledgeUnsupportedFile = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 2), 400, codes.InvalidArgument, "Unsupported file type"))
	ErrKnowledgePayloadTooLarge = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 3), 413, codes.InvalidArgument, "Document payload too large"))

	// Resource errors (category 04)
	ErrKnowledgeJobNotFound = Register(New(MakeCode(ServiceKnowledge, CategoryResource, 1), 404, codes.NotFound, "Processing job not found"))
	ErrKnowledgeNoResults   = Register(New(MakeCode(ServiceKnowledge, CategoryResource, 2), 404, codes.NotFound, "No knowledge results found"))

	// Internal errors (category 07)
	ErrKnowledgeProcessFailed = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 1), 500, codes.Internal, "Document processing failed"))
	ErrKnowledgeEmbedFailed   = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 2), 500, codes.Internal, "Embedding generation failed"))
	ErrKnowledgeSearchFailed  = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 3), 500, codes.Internal, "Knowledge search failed"))
	ErrAnalysisFailed         = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 4), 500, codes.Internal, "Analysis generation failed"))

	// Network errors (category 10)
	ErrVectorStore         = Register(New(MakeCode(ServiceKnowledge, CategoryNetwork, 1), 503, codes.Unavailable, "Vector store unavailable"))
	ErrProviderUnreachable = Register(New(MakeCode(ServiceKnowledge, CategoryNetwork, 2), 502, codes.Unavailable, "Model provider unreachable"))

	// Timeout errors (category 11)
	ErrKnowledgeTimeout = Register(New(MakeCode(ServiceKnowledge, CategoryTimeout, 1), 408, codes.DeadlineExceeded, "Knowledge operation timeout"))
)
