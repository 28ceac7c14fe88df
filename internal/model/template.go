package model

// AuctionTemplate is the member auction post template offered for copying
// next to the posting rules.
const AuctionTemplate = `***MEMBER AUCTION***

[ITEM DESCRIPTION - include edition size: LE XXX, OE, or LR]
[List any flaws, defects, or imperfections]

Starting Bid: $[AMOUNT]
Shipping: $[AMOUNT] within the U.S.; International $[AMOUNT] (or no international)
Ends: [DATE] @ [TIME] pm PST

*All bids must be in whole dollar increments.
*Payment Types Accepted: [Paypal and/or Venmo]

#disneykingpins #dkpauctions`
