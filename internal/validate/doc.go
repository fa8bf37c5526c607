// Package validate checks staged change-sets before they are handed to a
// committer. The structural pass proves every placeholder reference points
// at an insert staged in the same batch; the semantic pass proves insert
// rows satisfy the live schema and that update and delete targets exist
// in the store or among this batch's staged inserts. Both passes collect
// every finding instead of failing fast.
package validate
