package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// AccountIDHeaderName is the metadata key under which the server echoes the
// account a request was scoped to.
const AccountIDHeaderName = "account_id"
