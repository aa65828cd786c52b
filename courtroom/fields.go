//
// Field index constants for the MS (in-character message) packet.
//
// A 2.6-era client sends the first 15 fields; later protocol revisions
// extend the vector with showname, pairing, and effects data. The server
// accepts anything from 15 fields up and always rebroadcasts the full
// extended vector with the computed pair fields spliced in.
//

package courtroom

// incoming MS fields
const (
	icDeskMod = iota
	icPreAnim
	icCharName
	icEmote
	icMessage
	icSide
	icSFXName
	icEmoteMod
	icCharID
	icSFXDelay
	icObjection
	icEvidence
	icFlip
	icRealization
	icColor
	icShowname
	icPairID
	icSelfOffset
	icImmediate
	icLoopingSFX
	icScreenshake
	icFramesShake
	icFramesRealization
	icFramesSFX
	icAdditive
	icEffects

	icFieldCount // one past the last incoming field
)

// icMinFields is the arity a bare 2.6 client sends; anything shorter is
// rejected at dispatch.
const icMinFields = 15

// outgoing MS fields (the broadcast vector, pair data included)
const (
	ocDeskMod = iota
	ocPreAnim
	ocCharName
	ocEmote
	ocMessage
	ocSide
	ocSFXName
	ocEmoteMod
	ocCharID
	ocSFXDelay
	ocObjection
	ocEvidence
	ocFlip
	ocRealization
	ocColor
	ocShowname
	ocPairID
	ocPairName
	ocPairEmote
	ocSelfOffset
	ocPairOffset
	ocPairFlip
	ocImmediate
	ocLoopingSFX
	ocScreenshake
	ocFramesShake
	ocFramesRealization
	ocFramesSFX
	ocAdditive
	ocEffects

	ocFieldCount
)
