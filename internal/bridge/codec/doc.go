/*
Package codec converts between Go values and the bridge wire text, a JSON
dialect shared with the page side.

Encoding is total. Maps become objects with keys stringified and sorted,
slices and arrays become lists, time.Time becomes an ISO-8601 UTC string with
millisecond precision and floats always carry a decimal point or exponent.
Records opt in through Encodable and enumerations through Enum (or a String
method on a named integer type). Anything else is sent as its quoted default
string form.

Decoding is total too: text that does not parse is returned as the original
string. Integers decode to the narrowest of int32, int64 and *big.Int, any
token with a decimal point or exponent decodes to float64 and any string
matching the timestamp layout decodes to time.Time. A Shape narrows a generic
value to an expected type, with Record building Decodable records.
*/
package codec
