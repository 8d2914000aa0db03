// Package driver defines the MPC/TSS collaborator boundary (§4.7): the
// relay core treats KeyShare and Signature as inert byte payloads it
// never inspects, produced and consumed entirely behind the
// KeyShareDriver interface.
//
// LocalDriver, the only implementation in this package, is explicitly
// not a threshold signature scheme. It exists to drive the keygen/sign
// ceremony end to end in tests without depending on
// a real TSS library that was not part of the retrieved example corpus;
// every participant ends up computing the identical group key and
// signature independently, which is precisely the property a real
// threshold scheme must NOT have. Do not use this in production.
package driver
